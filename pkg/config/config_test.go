package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 6, cfg.Promotion.FinalSemester)
	assert.Equal(t, 15*time.Minute, cfg.Promotion.PlanTTL)
	assert.Equal(t, 5*time.Minute, cfg.Reset.ConfirmationTTL)
	assert.True(t, cfg.Statistics.CacheEnabled)
	assert.True(t, cfg.Redis.Enabled)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("PROMOTION_FINAL_SEMESTER", 0)
	v.Set("STATS_CACHE_TTL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg := fromViper(v)
	assert.Equal(t, 6, cfg.Promotion.FinalSemester)
	assert.Equal(t, 5*time.Minute, cfg.Statistics.CacheTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}
