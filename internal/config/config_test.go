package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"CREDIT_TERM_DAYS", "CREDIT_HARD_BLOCK", "SWEEP_INTERVAL", "CREDIT_WARNING_RATIO", "KAFKA_BROKERS"} {
		t.Setenv(k, "")
	}
	c := Load()
	assert.Equal(t, 30, c.CreditTermDays)
	assert.True(t, c.CreditHardBlock)
	assert.Equal(t, time.Hour, c.SweepInterval)
	assert.Equal(t, "0.75", c.CreditWarningRatio.String())
	assert.Equal(t, []string{"kafka:9092"}, c.KafkaBrokers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CREDIT_TERM_DAYS", "45")
	t.Setenv("CREDIT_HARD_BLOCK", "false")
	t.Setenv("SWEEP_INTERVAL", "90s")
	t.Setenv("CREDIT_WARNING_RATIO", "0.8")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("PROJECTOR_WORKERS", "not-a-number")

	c := Load()
	assert.Equal(t, 45, c.CreditTermDays)
	assert.False(t, c.CreditHardBlock)
	assert.Equal(t, 90*time.Second, c.SweepInterval)
	assert.Equal(t, "0.8", c.CreditWarningRatio.String())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.KafkaBrokers)
	assert.Equal(t, 8, c.ProjectorWorkers)
}

func TestWarningRatioMustBePositive(t *testing.T) {
	for _, v := range []string{"-0.2", "0", "abc"} {
		t.Setenv("CREDIT_WARNING_RATIO", v)
		assert.Equal(t, "0.75", Load().CreditWarningRatio.String(), "CREDIT_WARNING_RATIO=%q", v)
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	c := Config{LogLevel: "warn", LogFormat: "text", ServiceName: "o2c-api"}
	log := c.Logger(&buf)
	log.Info("hidden")
	log.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "service=o2c-api")
}
