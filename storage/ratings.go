// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/gorse-io/ratelab/base/log"
	"github.com/gorse-io/ratelab/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	_ "modernc.org/sqlite"
)

// RatingRecord is a row of a rating table. Timestamps are unix seconds.
type RatingRecord struct {
	UserId    int32   `gorm:"column:user_id;primaryKey"`
	ItemId    int32   `gorm:"column:item_id;primaryKey"`
	Rating    float32 `gorm:"column:rating"`
	Timestamp int64   `gorm:"column:timestamp;index"`
}

// Open connects to a database by DSN. Supported prefixes are mysql://,
// postgres://, postgresql:// and sqlite://.
func Open(dsn string) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch {
	case strings.HasPrefix(dsn, MySQLPrefix):
		name := dsn[len(MySQLPrefix):]
		if name, err = AppendMySQLParams(name, map[string]string{"charset": "utf8mb4"}); err != nil {
			return nil, errors.Trace(err)
		}
		db, err = gorm.Open(mysql.Open(name), NewGORMConfig())
	case strings.HasPrefix(dsn, PostgresPrefix) || strings.HasPrefix(dsn, PostgreSQLPrefix):
		db, err = gorm.Open(postgres.New(postgres.Config{DSN: dsn}), NewGORMConfig())
	case strings.HasPrefix(dsn, SQLitePrefix):
		name := dsn[len(SQLitePrefix):]
		if name, err = AppendURLParams(name, []lo.Tuple2[string, string]{
			{A: "_pragma", B: "busy_timeout(10000)"},
		}); err != nil {
			return nil, errors.Trace(err)
		}
		var client *sql.DB
		if client, err = sql.Open("sqlite", name); err != nil {
			return nil, errors.Trace(err)
		}
		client.SetMaxOpenConns(1)
		db, err = gorm.Open(sqlite.Dialector{Conn: client}, NewGORMConfig())
	default:
		return nil, errors.NotSupportedf("database %s", log.RedactDBURL(dsn))
	}
	if err != nil {
		return nil, errors.Annotatef(err, "open %s", log.RedactDBURL(dsn))
	}
	log.Logger().Info("connect to database", zap.String("dsn", log.RedactDBURL(dsn)))
	return db, nil
}

// LoadRatings reads (user, item, rating, timestamp) rows ordered by time into
// a Dataset. Timestamps are kept in the side channel dataset.Timestamps.
func LoadRatings(ctx context.Context, db *gorm.DB, table string) (*dataset.Dataset, error) {
	start := time.Now()
	rows, err := db.WithContext(ctx).Table(table).
		Select("user_id, item_id, rating, timestamp").
		Order("timestamp, user_id, item_id").
		Rows()
	if err != nil {
		return nil, errors.Annotatef(err, "query ratings from %s", table)
	}
	defer rows.Close()
	data := dataset.NewDataset()
	timestamps := make(map[dataset.Rating]time.Time)
	for rows.Next() {
		var record RatingRecord
		if err = db.ScanRows(rows, &record); err != nil {
			return nil, errors.Annotatef(err, "scan ratings from %s", table)
		}
		if old := data.GetRating(record.UserId, record.ItemId); old != dataset.NotRated {
			delete(timestamps, dataset.Rating{UserId: record.UserId, ItemId: record.ItemId, Value: old})
		}
		rating := data.AddRating(record.UserId, record.ItemId, record.Rating)
		timestamps[rating] = time.Unix(record.Timestamp, 0).UTC()
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	if data.Count() == 0 {
		return nil, errors.NotFoundf("ratings in %s", table)
	}
	data.AddExtraInformation(dataset.Timestamps, timestamps)
	log.Logger().Info("load ratings complete",
		zap.String("table", table),
		zap.Int("n_ratings", data.Count()),
		zap.Int("n_users", data.UserCount()),
		zap.Int("n_items", data.ItemCount()),
		zap.Duration("load_time", time.Since(start)))
	return data, nil
}

// SaveRatings creates the table if needed and upserts the ratings of a
// Dataset. Timestamps are taken from dataset.Timestamps when present.
func SaveRatings(ctx context.Context, db *gorm.DB, table string, data *dataset.Dataset) error {
	tx := db.WithContext(ctx).Table(table)
	if err := tx.AutoMigrate(&RatingRecord{}); err != nil {
		return errors.Annotatef(err, "create table %s", table)
	}
	var timestamps map[dataset.Rating]time.Time
	if value, ok := data.GetExtraInformation(dataset.Timestamps); ok {
		timestamps, _ = value.(map[dataset.Rating]time.Time)
	}
	records := make([]RatingRecord, 0, data.Count())
	for i := 0; i < data.Count(); i++ {
		rating := data.Rating(i)
		record := RatingRecord{UserId: rating.UserId, ItemId: rating.ItemId, Rating: rating.Value}
		if ts, ok := timestamps[rating]; ok {
			record.Timestamp = ts.Unix()
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		return nil
	}
	if err := db.WithContext(ctx).Table(table).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(records, 1000).Error; err != nil {
		return errors.Annotatef(err, "insert ratings into %s", table)
	}
	return nil
}
