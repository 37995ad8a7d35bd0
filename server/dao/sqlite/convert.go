package sqlite

import (
	"database/sql"
	"time"
)

const dateLayout = "2006-01-02"

func convertToDB_Time(t time.Time) int64 {
	return t.UnixMicro()
}

func convertFromDB_Time(v int64, target *time.Time) {
	*target = time.UnixMicro(v)
}

func convertToDB_Date(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func convertFromDB_Date(s string, target *time.Time) error {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return err
	}
	*target = t
	return nil
}

func convertToDB_Bool(b bool) int {
	if b {
		return 1
	}
	return 0
}

func convertToDB_NullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func convertFromDB_NullFloat(nf sql.NullFloat64, target **float64) {
	if !nf.Valid {
		*target = nil
		return
	}
	v := nf.Float64
	*target = &v
}
