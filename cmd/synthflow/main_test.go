package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPatch = `
sampleRate: 8000
nodes:
  - name: osc
    type: sine
    params:
      freq: 440
  - name: amp
    type: gain
    params:
      gain: 0.5
connections:
  - from: osc.out
    to: amp.in
outputs:
  - amp.out
  - osc.out
`

func TestInit(t *testing.T) {
	// check if commands are registered
	assert.Equal(t, 2, len(commands()))
}

func TestUsage(t *testing.T) {
	var out bytes.Buffer
	c := config{args: []string{"synthflow"}, out: &out}
	assert.Equal(t, errorExitCode, c.run())
	assert.Contains(t, out.String(), "render")

	out.Reset()
	c = config{args: []string{"synthflow", "play"}, out: &out}
	assert.Equal(t, errorExitCode, c.run())
}

func TestList(t *testing.T) {
	var out bytes.Buffer
	c := config{args: []string{"synthflow", "list"}, out: &out}
	assert.Equal(t, successExitCode, c.run())
	assert.Contains(t, out.String(), "sine")
	assert.Contains(t, out.String(), "mixer")
}

func TestRender(t *testing.T) {
	dir := t.TempDir()
	patchPath := filepath.Join(dir, "patch.yaml")
	outPath := filepath.Join(dir, "out.wav")
	require.NoError(t, os.WriteFile(patchPath, []byte(testPatch), 0o644))

	var out bytes.Buffer
	c := config{
		args: []string{"synthflow", "render", "-patch", patchPath, "-out", outPath, "-duration", "250ms"},
		out:  &out,
	}
	require.Equal(t, successExitCode, c.run(), out.String())

	file, err := os.Open(outPath)
	require.NoError(t, err)
	defer file.Close()
	dec := goaudio.NewDecoder(file)
	require.True(t, dec.IsValidFile())
	assert.Equal(t, uint32(8000), dec.SampleRate)
	assert.Equal(t, uint16(2), dec.NumChans)
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, 2000, buf.NumFrames())
	assert.Contains(t, out.String(), "250ms")
}

func TestRenderValidate(t *testing.T) {
	var out bytes.Buffer
	c := config{args: []string{"synthflow", "render"}, out: &out}
	assert.Equal(t, errorExitCode, c.run())
	assert.Contains(t, out.String(), "Missing -patch required flag")
	assert.Contains(t, out.String(), "Missing -out required flag")
}
