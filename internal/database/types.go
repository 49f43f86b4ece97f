package database

import (
	"time"
)

// StoredRun is an archived verification run
type StoredRun struct {
	ID                string
	StartedAt         time.Time
	Duration          time.Duration
	InputFile         string
	OutputFile        string
	MatchingThreshold int
	Subjects          int
	Populated         int
	Skipped           int
	Failed            int
	Pairs             int
	OK                int
	Errors            int
}
