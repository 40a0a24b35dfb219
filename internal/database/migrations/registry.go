package migrations

import (
	"gorm.io/gorm"

	"github.com/sanketb-14/Streamline-sub000/internal/models"
)

// AllMigrations returns all registered migrations in order.
//   - 001: channels, videos and video tags
//   - 002: channel video list and per-user reactions
//   - 003: unique list position per channel
func AllMigrations() []Migration {
	return []Migration{
		migration001Catalog(),
		migration002Engagement(),
		migration003ChannelPosition(),
	}
}

func migration001Catalog() Migration {
	return Migration{
		Version:     "001",
		Description: "Create channel and video catalog tables",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.Channel{},
				&models.Video{},
				&models.VideoTag{},
			)
		},
		Down: func(tx *gorm.DB) error {
			return dropTables(tx, "video_tags", "videos", "channels")
		},
	}
}

func migration002Engagement() Migration {
	return Migration{
		Version:     "002",
		Description: "Create channel video list and reaction tables",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.ChannelVideo{},
				&models.VideoReaction{},
			)
		},
		Down: func(tx *gorm.DB) error {
			return dropTables(tx, "video_reactions", "channel_videos")
		},
	}
}

// channelPositionIndex is declared on models.ChannelVideo; databases migrated
// before it existed only get it here.
const channelPositionIndex = "idx_channel_position"

func migration003ChannelPosition() Migration {
	return Migration{
		Version:     "003",
		Description: "Add unique channel list position index",
		Up: func(tx *gorm.DB) error {
			if tx.Migrator().HasIndex(&models.ChannelVideo{}, channelPositionIndex) {
				return nil
			}
			return tx.Migrator().CreateIndex(&models.ChannelVideo{}, channelPositionIndex)
		},
		Down: func(tx *gorm.DB) error {
			if !tx.Migrator().HasIndex(&models.ChannelVideo{}, channelPositionIndex) {
				return nil
			}
			return tx.Migrator().DropIndex(&models.ChannelVideo{}, channelPositionIndex)
		},
	}
}

func dropTables(tx *gorm.DB, tables ...string) error {
	for _, table := range tables {
		if !tx.Migrator().HasTable(table) {
			continue
		}
		if err := tx.Migrator().DropTable(table); err != nil {
			return err
		}
	}
	return nil
}
