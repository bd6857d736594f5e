package service

import (
	"log"

	"github.com/go-co-op/gocron/v2"
)

// NewScheduler returns the gocron scheduler used for cron-triggered
// deploy runs. The scheduler only fails to construct on invalid
// options, so a failure here is fatal.
func NewScheduler() gocron.Scheduler {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Fatal(err)
	}
	return scheduler
}
