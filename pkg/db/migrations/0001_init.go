package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

type Build struct {
	ID            uuid.UUID         `gorm:"type:uuid;primaryKey"`
	AppName       string            `gorm:"type:text;not null"`
	Framework     string            `gorm:"type:text;not null"`
	TargetOS      string            `gorm:"type:text;not null"`
	SourceType    string            `gorm:"type:text;not null"`
	SourceURL     *string           `gorm:"type:text"`
	WrapperMode   string            `gorm:"type:text;not null"`
	Status        string            `gorm:"type:text;not null;index"`
	ErrorMessage  *string           `gorm:"type:text"`
	ProjectConfig datatypes.JSONMap `gorm:"type:jsonb"`
	CIRunID       *int64            `gorm:"type:bigint"`
	CompletedAt   *time.Time        `gorm:"type:timestamptz"`
	CreatedAt     time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

type BuildArtifact struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	BuildID     uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_build_artifact_name"`
	FileType    string    `gorm:"type:text;not null"`
	FileName    string    `gorm:"type:text;not null;uniqueIndex:idx_build_artifact_name"`
	FileSize    string    `gorm:"type:text;not null"`
	StoragePath string    `gorm:"type:text;not null"`
	DownloadURL *string   `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	Build       Build     `gorm:"foreignKey:BuildID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).AutoMigrate(
		&Build{},
		&BuildArtifact{},
	); err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().CreateConstraint(&BuildArtifact{}, "Build")
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().DropTable(
		&BuildArtifact{},
		&Build{},
	)
}
