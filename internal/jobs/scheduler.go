package jobs

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/ingest"
	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/objects"
	"github.com/pulsewatch/pulsewatch/internal/store"
)

// Scheduler manages background housekeeping jobs
type Scheduler struct {
	cron    *cron.Cron
	db      *gorm.DB
	objects *objects.Store
}

// NewScheduler creates a new job scheduler
func NewScheduler(db *gorm.DB, objectStore *objects.Store) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		db:      db,
		objects: objectStore,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	// Prune expired flips hourly at minute 10
	s.cron.AddFunc("10 * * * *", func() {
		s.pruneFlips()
	})

	// Sweep ping retention daily at 3:14 AM
	s.cron.AddFunc("14 3 * * *", func() {
		log.Println("Running ping retention sweep...")
		s.prunePings()
	})

	// Vacuum database weekly at 2:30 AM on Sunday
	s.cron.AddFunc("30 2 * * 0", func() {
		log.Println("Running vacuum job...")
		s.vacuumDatabase()
	})

	s.cron.Start()
	log.Println("Job scheduler started")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Job scheduler stopped")
}

// pruneFlips removes flips past the retention window
func (s *Scheduler) pruneFlips() {
	removed, err := store.PruneFlips(s.db, time.Now().UTC())
	if err != nil {
		log.Printf("Failed to prune flips: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("Pruned %d expired flips", removed)
	}
}

// prunePings drops pings beyond each check's retention
func (s *Scheduler) prunePings() {
	var checks []models.Check
	if err := s.db.Where("n_pings > ?", store.PingRetention).Find(&checks).Error; err != nil {
		log.Printf("Failed to list checks for ping retention: %v", err)
		return
	}

	var total int64
	for i := range checks {
		removed, err := ingest.PruneCheckPings(s.db, s.objects, &checks[i])
		if err != nil {
			log.Printf("Failed to prune pings for %s: %v", checks[i].Code, err)
			continue
		}
		total += removed
	}
	if total > 0 {
		log.Printf("Pruned %d old pings", total)
	}
}

// vacuumDatabase reclaims space after pruning
func (s *Scheduler) vacuumDatabase() {
	if s.db.Dialector.Name() == "postgres" {
		if err := s.db.Exec("VACUUM").Error; err != nil {
			log.Printf("Failed to vacuum database: %v", err)
			return
		}
		log.Println("Database vacuum completed")
	}
}
