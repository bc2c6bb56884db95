// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package obsconfig reads the ObsSpace configuration surface from
// YAML.  Only the recognized options exist; unknown keys are a
// configuration error, not a silent no-op.
package obsconfig

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/maxrathmann/ioda/lib/containers"
	"github.com/maxrathmann/ioda/lib/obs/obserr"
	"github.com/maxrathmann/ioda/lib/obs/obstypes"
)

// KnownObsTypes is the set of obs-domain front ends this build
// understands.
var KnownObsTypes = containers.NewSet(
	"Aircraft",
	"Radiance",
	"Radiosonde",
	"Satwind",
	"GnssroRef",
	"SeaIceFraction",
	"SeaSurfaceTemp",
	"StericHeight",
	"InsituTemperature",
	"AOD",
)

type ObsFile struct {
	ObsFile string `yaml:"obsfile"`
	// Engine overrides the format guessed from the filename
	// (netcdf, hdf5, hdf5-mem, memory). It is honored when loading
	// obsdatain; the obsdataout file's format is always guessed from
	// its filename.
	Engine string `yaml:"engine"`
}

type HDF5 struct {
	// CompatibilityRange is the (low, high) pair of library
	// versions the output must stay readable by.
	CompatibilityRange []string `yaml:"compatibility range"`

	MemoryImageInitialSize     int64 `yaml:"memory image initial size"`
	MemoryImageGrowthIncrement int64 `yaml:"memory image growth increment"`
	FlushOnClose               bool  `yaml:"flush on close"`
}

type ObsSpace struct {
	ObsType      string  `yaml:"ObsType"`
	WindowBegin  string  `yaml:"window begin"`
	WindowEnd    string  `yaml:"window end"`
	Distribution string  `yaml:"distribution"`
	ObsDataIn    ObsFile `yaml:"obsdatain"`
	ObsDataOut   ObsFile `yaml:"obsdataout"`
	HDF5         HDF5    `yaml:"hdf5"`
}

// Read loads and validates an ObsSpace config file.
func Read(path string) (ObsSpace, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ObsSpace{}, fmt.Errorf("config %q: %w", path, err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return ObsSpace{}, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a config document.
func Parse(raw []byte) (ObsSpace, error) {
	var cfg ObsSpace
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return ObsSpace{}, fmt.Errorf("%v: %w", err, obserr.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return ObsSpace{}, err
	}
	return cfg, nil
}

func (cfg ObsSpace) Validate() error {
	if cfg.ObsType == "" {
		return fmt.Errorf("ObsType is required: %w", obserr.ErrInvalidConfig)
	}
	if !KnownObsTypes.Has(cfg.ObsType) {
		return fmt.Errorf("unknown ObsType %q: %w", cfg.ObsType, obserr.ErrInvalidConfig)
	}
	begin, end, err := cfg.Window()
	if err != nil {
		return err
	}
	if end.Cmp(begin) <= 0 {
		return fmt.Errorf("window end %v is not after window begin %v: %w", end, begin, obserr.ErrInvalidConfig)
	}
	if len(cfg.HDF5.CompatibilityRange) != 0 && len(cfg.HDF5.CompatibilityRange) != 2 {
		return fmt.Errorf("compatibility range wants a (low, high) pair, got %d entries: %w",
			len(cfg.HDF5.CompatibilityRange), obserr.ErrInvalidConfig)
	}
	return nil
}

// Window parses the assimilation window bounds.
func (cfg ObsSpace) Window() (begin, end obstypes.DateTime, err error) {
	begin, err = obstypes.ParseDateTime(cfg.WindowBegin)
	if err != nil {
		return begin, end, fmt.Errorf("window begin: %v: %w", err, obserr.ErrInvalidConfig)
	}
	end, err = obstypes.ParseDateTime(cfg.WindowEnd)
	if err != nil {
		return begin, end, fmt.Errorf("window end: %v: %w", err, obserr.ErrInvalidConfig)
	}
	return begin, end, nil
}
