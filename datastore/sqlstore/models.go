/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type databaseRow struct {
	bun.BaseModel `bun:"table:docstore_databases,alias:d"`

	ID         string `bun:"id,pk,type:varchar(191)"`
	Throughput int32  `bun:"throughput,notnull"`
}

type containerRow struct {
	bun.BaseModel `bun:"table:docstore_containers,alias:c"`

	DatabaseID       string `bun:"database_id,pk,type:varchar(191)"`
	ID               string `bun:"id,pk,type:varchar(191)"`
	PartitionKeyPath string `bun:"partition_key_path,notnull"`
	Throughput       int32  `bun:"throughput,notnull"`
}

// itemRow keys stay under MySQL's 3072 byte index limit with utf8mb4.
type itemRow struct {
	bun.BaseModel `bun:"table:docstore_items,alias:i"`

	DatabaseID   string    `bun:"database_id,pk,type:varchar(191)"`
	ContainerID  string    `bun:"container_id,pk,type:varchar(191)"`
	PartitionKey string    `bun:"partition_key,pk,type:varchar(191)"`
	ID           string    `bun:"id,pk,type:varchar(191)"`
	Body         string    `bun:"body,notnull,type:text"`
	ETag         string    `bun:"etag,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
}

var models = []any{
	(*databaseRow)(nil),
	(*containerRow)(nil),
	(*itemRow)(nil),
}

// binaryCollation compares keys byte by byte. MySQL's default utf8mb4
// collations fold case and accents, which would merge ids such as "a" and
// "A" and break keyset ordering.
const binaryCollation = "utf8mb4_bin"

func tableName(db *bun.DB, model any) string {
	return db.NewCreateTable().Model(model).GetTableName()
}

// foldingColumnsQuery counts the text columns of table that do not use
// binaryCollation
func foldingColumnsQuery(db *bun.DB, table string) *bun.RawQuery {
	return db.NewRaw(`SELECT COUNT(*) FROM information_schema.columns
WHERE table_schema = DATABASE() AND table_name = ?
AND collation_name IS NOT NULL AND collation_name <> ?`, table, binaryCollation)
}

func binaryCollationQuery(db *bun.DB, table string) *bun.RawQuery {
	return db.NewRaw("ALTER TABLE ? CONVERT TO CHARACTER SET utf8mb4 COLLATE "+binaryCollation, bun.Ident(table))
}
