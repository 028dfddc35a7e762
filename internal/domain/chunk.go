package domain

import "time"

// TileOutput describes one persisted tile file.
type TileOutput struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

// ChunkSummary describes one finished (year, month) chunk.
type ChunkSummary struct {
	RunID            string        `json:"run_id"`
	Month            Month         `json:"-"`
	ProfilesAccepted int64         `json:"profiles_accepted"`
	ProfilesRejected int64         `json:"profiles_rejected"`
	Rows             int64         `json:"rows"`
	Tiles            []TileOutput  `json:"tiles"`
	Duration         time.Duration `json:"duration"`
	CompletedAt      time.Time     `json:"completed_at"`
}

// TileWritten is the notification emitted after a tile file is persisted.
type TileWritten struct {
	RunID     string    `json:"run_id"`
	Chunk     string    `json:"chunk"`
	Tile      string    `json:"tile"`
	Path      string    `json:"path"`
	Rows      int       `json:"rows"`
	WrittenAt time.Time `json:"written_at"`
}
