// Package config holds the tunables of the simulated machine, scheduler
// and file system, loaded from a JSON file the same way every module of
// this kernel loads its own configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/huiyuiui/NachOS/internal/klog"
)

// Config bundles the dimensions of the simulated machine together with
// the scheduler's and file system's tunable constants.
type Config struct {
	LogLevel string `json:"LOG_LEVEL"`

	// Simulated machine
	PageSize      int `json:"PAGE_SIZE"`
	NumPhysPages  int `json:"NUM_PHYS_PAGES"`
	NumRegisters  int `json:"NUM_REGISTERS"`
	UserStackSize int `json:"USER_STACK_SIZE"`

	// Simulated disk
	SectorSize int `json:"SECTOR_SIZE"`
	NumSectors int `json:"NUM_SECTORS"`

	// Scheduler
	AgingQuantumTicks int     `json:"AGING_QUANTUM_TICKS"`
	AgingIncrement    int     `json:"AGING_INCREMENT"`
	L3QuantumTicks    int     `json:"L3_QUANTUM_TICKS"`
	BurstAlpha        float64 `json:"BURST_ALPHA"`

	// File system
	NumDirect      int `json:"NUM_DIRECT"`
	NumDirEntries  int `json:"NUM_DIR_ENTRIES"`
	FileNameMaxLen int `json:"FILE_NAME_MAX_LEN"`
}

// MemorySize is the total byte size of simulated main memory.
func (c *Config) MemorySize() int {
	return c.PageSize * c.NumPhysPages
}

// Default returns the reference NachOS dimensions used by the demo
// command and by tests that don't care about exercising unusual sizes.
func Default() *Config {
	return &Config{
		LogLevel:          "info",
		PageSize:          128,
		NumPhysPages:      32,
		NumRegisters:      40,
		UserStackSize:     1024,
		SectorSize:        128,
		NumSectors:        200,
		AgingQuantumTicks: 1500,
		AgingIncrement:    10,
		L3QuantumTicks:    100,
		BurstAlpha:        0.5,
		NumDirect:         10,
		NumDirEntries:     64,
		FileNameMaxLen:    9,
	}
}

// Load decodes a JSON configuration file into a fresh T. Mirrors the
// generic loader every module of this kernel uses, generalized so the
// caller picks the concrete config type.
func Load[T any](path string) (*T, error) {
	klog.InfoLog.Info("loading configuration", "path", path)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file %s: %w", path, err)
	}
	defer file.Close()

	var cfg T
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config file %s: %w", path, err)
	}

	klog.InfoLog.Info("configuration loaded")
	return &cfg, nil
}
