package settings

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/creditrail/creditrail/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func resetSnapshot() {
	StoreDBConfig(time.Time{}, nil)
}

func TestIntValueParsing(t *testing.T) {
	defer resetSnapshot()
	StoreDBConfig(time.Now().UTC(), map[string]json.RawMessage{
		"AS_NUMBER": json.RawMessage(`45`),
		"AS_STRING": json.RawMessage(`" 90 "`),
		"AS_JUNK":   json.RawMessage(`{"nope":1}`),
	})

	if got := IntValue("AS_NUMBER", 7); got != 45 {
		t.Fatalf("number value = %d", got)
	}
	if got := IntValue("AS_STRING", 7); got != 90 {
		t.Fatalf("quoted value = %d", got)
	}
	if got := IntValue("AS_JUNK", 7); got != 7 {
		t.Fatalf("junk value fallback = %d", got)
	}
	if got := IntValue("MISSING", 7); got != 7 {
		t.Fatalf("missing value fallback = %d", got)
	}
}

func TestStringValue(t *testing.T) {
	defer resetSnapshot()
	StoreDBConfig(time.Now().UTC(), map[string]json.RawMessage{
		"NAME":  json.RawMessage(`"creditrail"`),
		"BLANK": json.RawMessage(`"  "`),
	})

	if got := StringValue("NAME", "fallback"); got != "creditrail" {
		t.Fatalf("string value = %q", got)
	}
	if got := StringValue("BLANK", "fallback"); got != "fallback" {
		t.Fatalf("blank value = %q", got)
	}
	if got := StringValue("MISSING", "fallback"); got != "fallback" {
		t.Fatalf("missing value = %q", got)
	}
}

func TestRefreshDBConfigSnapshot(t *testing.T) {
	defer resetSnapshot()
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(&models.Setting{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	rows := []models.Setting{
		{Key: RecoverySweepIntervalSecondsKey, Value: json.RawMessage(`30`)},
		{Key: SiteNameKey, Value: json.RawMessage(`"My Site"`)},
	}
	if errCreate := conn.Create(&rows).Error; errCreate != nil {
		t.Fatalf("seed settings: %v", errCreate)
	}

	if errRefresh := RefreshDBConfigSnapshot(context.Background(), conn); errRefresh != nil {
		t.Fatalf("refresh: %v", errRefresh)
	}
	if got := IntValue(RecoverySweepIntervalSecondsKey, DefaultRecoverySweepIntervalSeconds); got != 30 {
		t.Fatalf("interval = %d", got)
	}
	if got := StringValue(SiteNameKey, DefaultSiteName); got != "My Site" {
		t.Fatalf("site name = %q", got)
	}
	if DBConfigUpdatedAt().IsZero() {
		t.Fatal("expected a refresh timestamp")
	}
}
