package models

import "time"

type ImportJob struct {
	ID             int64
	FileName       string
	FilePath       string
	Description    string
	UserID         string
	IsAdmin        bool
	DataSourceID   int64
	Status         int
	Note           string
	SkipLinesCount int
	CreatedAt      time.Time
	StartedAt      *time.Time
	EndedAt        *time.Time
}

type DataSource struct {
	ID                int64
	Name              string
	Mapping           []byte
	CSVDelimiter      string
	CSVSkipCount      int
	AllowedOperations int
	StatUnitType      string
	UploadType        int
	Priority          int
}

type UploadLog struct {
	ID                int64
	JobID             int64
	StartedAt         time.Time
	EndedAt           time.Time
	TargetStatID      string
	StatUnitName      string
	SerializedRawUnit []byte
	SerializedUnit    []byte
	Status            int
	Note              string
	Errors            []byte
	Summary           []byte
}
