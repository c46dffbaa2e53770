package repository

import (
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect SQL 方言
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect 由驱动名得到方言，未知驱动按 postgres 处理
func ParseDialect(driver string) Dialect {
	if driver == string(DialectSQLite) {
		return DialectSQLite
	}
	return DialectPostgres
}

// base 各 Repository 共用的连接、方言和日志
type base struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// q 将 ? 占位符改写为当前方言的占位符（postgres 使用 $n）
func (b base) q(query string) string {
	return Rebind(b.dialect, query)
}

// Rebind 将 ? 占位符改写为 $1, $2 ...（SQLite 原样返回）
func Rebind(d Dialect, query string) string {
	if d != DialectPostgres {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// IsUniqueViolation 判断是否为唯一约束冲突（postgres 23505 / SQLite UNIQUE、PRIMARY KEY）
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
			strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
	}

	return false
}

// utc 统一以 UTC 写入，SQLite 中时间以文本存储，需保证比较一致
func utc(t time.Time) time.Time {
	return t.UTC()
}
