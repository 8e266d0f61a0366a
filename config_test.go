package versequiz

import "testing"

func TestLoadConfig(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("VERSEQUIZ_POINTS", "8")
	t.Setenv("VERSEQUIZ_VERBOSE", "true")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "nope")
	t.Setenv("VERSEQUIZ_SEED_BOOK", "")

	config := LoadConfig()
	if config.Port != "9000" {
		t.Errorf("Port = %q, want 9000", config.Port)
	}
	if config.Points != 8 {
		t.Errorf("Points = %d, want 8", config.Points)
	}
	if !config.Verbose {
		t.Error("Verbose = false, want true")
	}
	if config.Redis.Address != "localhost:6379" || config.Redis.DB != 0 {
		t.Errorf("Redis = %+v, want localhost:6379 db 0", config.Redis)
	}
	if config.SeedBook != "Genesis" {
		t.Errorf("SeedBook = %q, want Genesis", config.SeedBook)
	}
}
