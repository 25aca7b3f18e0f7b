package db

import (
	"context"
	"strings"

	"github.com/realmorph/datakit/logger"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"
)

type mysqlDatabase struct {
	logger logger.Logger
	db     *gorm.DB
}

// NewMySQL opens a MySQL connection with the given configuration.
// The connection is pinged before it is returned.
func NewMySQL(log logger.Logger, cfg *Config) (Database, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	md := &mysqlDatabase{logger: log}

	var gormLogLevel glogger.LogLevel
	switch strings.ToLower(cfg.LogLevel) {
	case "silent":
		gormLogLevel = glogger.Silent
	case "error":
		gormLogLevel = glogger.Error
	case "info":
		gormLogLevel = glogger.Info
	default:
		gormLogLevel = glogger.Warn
	}

	var err error
	md.db, err = gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger: &gormLogger{
			logger:        log,
			level:         gormLogLevel,
			slowThreshold: cfg.SlowThreshold,
		},
		PrepareStmt: true,
	})
	if err != nil {
		return nil, ErrConnection(err)
	}

	sqldb, err := md.db.DB()
	if err != nil {
		return nil, ErrConnection(err)
	}
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqldb.Ping(); err != nil {
		return nil, ErrConnection(err)
	}

	log.Info("database connection established",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
	)

	return md, nil
}

func (md *mysqlDatabase) DB() (*gorm.DB, error) {
	if md.db == nil {
		return nil, ErrConnectionNotEstablished
	}
	return md.db, nil
}

func (md *mysqlDatabase) Ping(ctx context.Context) error {
	sqldb, err := md.db.DB()
	if err != nil {
		return ErrConnection(err)
	}
	return sqldb.PingContext(ctx)
}

func (md *mysqlDatabase) Close() error {
	sqldb, err := md.db.DB()
	if err != nil {
		return ErrConnection(err)
	}
	return sqldb.Close()
}
