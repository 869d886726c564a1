package harvest

import "time"

// DatabaseRecord is one classified database copied under its identifier.
type DatabaseRecord struct {
	ID               uint   `gorm:"primaryKey"`
	RunID            string `gorm:"index;size:36"`
	OriginalFilename string `gorm:"size:1024"`
	OriginalPath     string `gorm:"index;size:4096"`
	Identifier       string `gorm:"index;size:64"`
	CopyPath         string `gorm:"size:4096"`
	SizeBytes        int64
	Tables           int
	CopiedAt         time.Time `gorm:"index"`
	LastError        string    `gorm:"type:text"`
}

func (DatabaseRecord) TableName() string { return "databases" }

// TableExportRecord is one non-empty table written as a CSV artifact.
type TableExportRecord struct {
	ID               uint   `gorm:"primaryKey"`
	RunID            string `gorm:"index;size:36"`
	ArtifactFilename string `gorm:"index;size:1024"`
	SourceTable      string `gorm:"column:table_name;size:1024"`
	OriginalFilename string `gorm:"size:1024"`
	OriginalPath     string `gorm:"size:4096"`
	Identifier       string `gorm:"index;size:64"`
	Rows             int
	ExportedAt       time.Time `gorm:"index"`
}

func (TableExportRecord) TableName() string { return "table_exports" }

// RunRecord summarizes one pipeline invocation.
type RunRecord struct {
	ID             uint      `gorm:"primaryKey"`
	RunID          string    `gorm:"uniqueIndex;size:36"`
	FormatLabel    string    `gorm:"size:64"`
	StartedAt      time.Time `gorm:"index"`
	ElapsedSeconds float64
	Files          int
	Databases      int
	Tables         int
	Errors         int
	Addresses      int
	Names          int
	Emails         int
	Phones         int
}

func (RunRecord) TableName() string { return "runs" }
