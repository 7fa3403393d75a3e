// Package history keeps a local record of completed transfers. Only
// finished transfers are written; in-flight session state never touches
// the database.
package history

import (
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

type Transfer struct {
	ID          uint `gorm:"primaryKey"`
	PeerID      string
	Direction   string
	FileName    string
	FileType    string
	Size        int64
	CompletedAt int64
}

type Store struct {
	DB *gorm.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Transfer{}); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Record writes one completed transfer. CompletedAt is stamped here.
func (s *Store) Record(peerID, direction, fileName, fileType string, size int64) error {
	entry := Transfer{
		PeerID:      peerID,
		Direction:   direction,
		FileName:    fileName,
		FileType:    fileType,
		Size:        size,
		CompletedAt: time.Now().Unix(),
	}
	return s.DB.Create(&entry).Error
}

// List returns completed transfers, most recent first.
func (s *Store) List() ([]Transfer, error) {
	transfers := []Transfer{}
	err := s.DB.Order("completed_at desc, id desc").Find(&transfers).Error
	return transfers, err
}
