package domain

import "time"

type Game struct {
	ID        string
	Name      string
	License   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
