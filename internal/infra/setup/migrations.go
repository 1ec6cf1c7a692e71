package setup

import (
	"fmt"

	"realtime-chat/internal/domain"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Models 是需要迁移的全部模型
func Models() []interface{} {
	return []interface{}{
		&domain.User{},
		&domain.Block{},
		&domain.Group{},
		&domain.GroupMember{},
		&domain.Message{},
	}
}

// MigrateDB 迁移关系数据库。
// skipMessages 为 true 时消息表由 MongoDB 承担，不在 SQL 中建表。
func MigrateDB(db *gorm.DB, skipMessages bool) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}
	models := Models()
	if skipMessages {
		models = models[:len(models)-1]
	}
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}
	logrus.WithField("tables", len(models)).Info("Database migration completed successfully")
	return nil
}
