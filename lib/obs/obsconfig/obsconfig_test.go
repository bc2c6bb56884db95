// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package obsconfig_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxrathmann/ioda/lib/obs/obsconfig"
	"github.com/maxrathmann/ioda/lib/obs/obserr"
)

const sampleConfig = `
ObsType: Radiosonde
window begin: 2018-04-14T21:00:00Z
window end: 2018-04-15T03:00:00Z
distribution: roundrobin
obsdatain:
  obsfile: testdata/sondes.nc
obsdataout:
  obsfile: out/sondes_obs.nc
hdf5:
  compatibility range: [v18, latest]
  memory image initial size: 1048576
  flush on close: true
`

func TestParse(t *testing.T) {
	t.Parallel()
	cfg, err := obsconfig.Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "Radiosonde", cfg.ObsType)
	assert.Equal(t, "roundrobin", cfg.Distribution)
	assert.Equal(t, "testdata/sondes.nc", cfg.ObsDataIn.ObsFile)
	assert.Equal(t, "out/sondes_obs.nc", cfg.ObsDataOut.ObsFile)
	assert.Equal(t, []string{"v18", "latest"}, cfg.HDF5.CompatibilityRange)
	assert.Equal(t, int64(1048576), cfg.HDF5.MemoryImageInitialSize)
	assert.True(t, cfg.HDF5.FlushOnClose)

	begin, end, err := cfg.Window()
	require.NoError(t, err)
	assert.Equal(t, int32(20180414), begin.Date())
	assert.Equal(t, int32(20180415), end.Date())
}

func TestParseErrors(t *testing.T) {
	t.Parallel()
	for name, doc := range map[string]string{
		"unknown ObsType": `
ObsType: Dropsonde
window begin: 2018-04-14T21:00:00Z
window end: 2018-04-15T03:00:00Z
`,
		"missing ObsType": `
window begin: 2018-04-14T21:00:00Z
window end: 2018-04-15T03:00:00Z
`,
		"bad window": `
ObsType: Radiosonde
window begin: yesterday-ish
window end: 2018-04-15T03:00:00Z
`,
		"inverted window": `
ObsType: Radiosonde
window begin: 2018-04-15T03:00:00Z
window end: 2018-04-14T21:00:00Z
`,
		"unknown key": `
ObsType: Radiosonde
window begin: 2018-04-14T21:00:00Z
window end: 2018-04-15T03:00:00Z
frobnicate: yes
`,
		"half a compat range": `
ObsType: Radiosonde
window begin: 2018-04-14T21:00:00Z
window end: 2018-04-15T03:00:00Z
hdf5:
  compatibility range: [v18]
`,
	} {
		_, err := obsconfig.Parse([]byte(doc))
		assert.ErrorIs(t, err, obserr.ErrInvalidConfig, "case %q", name)
	}
}
