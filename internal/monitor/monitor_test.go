package monitor

import (
	"crypto/tls"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	http3 "github.com/quic-go/quic-go/http3"

	"github.com/practos/practos/internal/cli"
	"github.com/practos/practos/internal/kernel"
	"github.com/practos/practos/internal/machine"
	"github.com/practos/practos/internal/testrunner/assert"
)

func bootedMachine(t *testing.T) *machine.Machine {
	t.Helper()
	m := machine.New(machine.Options{Kernel: kernel.Config{Quantum: 1000}})
	t.Cleanup(m.Close)
	m.Load("init", func(t *machine.Thread) {})
	assert.NoError(t, m.Boot("init", nil))
	return m
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestStatusReportsSnapshot(t *testing.T) {
	h := NewHandler(bootedMachine(t))
	rec := get(t, h, "/status")
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, rec.Header().Get("Content-Type"), "application/json")

	var st Status
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.True(t, st.Kernel.Idle, "booted kernel starts idle")
	assert.Equal(t, st.Kernel.Current, kernel.NoThread)
	assert.Equal(t, st.Kernel.Stats.Created, uint64(1))
	assert.Len(t, st.Kernel.Threads, 1)
	assert.Equal(t, st.Kernel.Threads[0].State, "ready")
	assert.Len(t, st.Kernel.Tables, 1)
	assert.NotEqual(t, st.Uptime, "")
}

func TestThreadsAndVersion(t *testing.T) {
	h := NewHandler(bootedMachine(t))

	var threads []kernel.ThreadInfo
	rec := get(t, h, "/threads")
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &threads))
	assert.Len(t, threads, 1)
	assert.Equal(t, threads[0].SP, uint32(0x00700000))

	var v cli.VersionInfo
	rec = get(t, h, "/version")
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, v.Version, cli.Version)
	assert.Equal(t, v.Syscalls, cli.NumSyscalls)

	rec = get(t, h, "/nope")
	assert.Equal(t, rec.Code, http.StatusNotFound)
}

func TestThreadsEmptyAfterBootlessMachine(t *testing.T) {
	m := machine.New(machine.Options{})
	t.Cleanup(m.Close)
	rec := get(t, NewHandler(m), "/threads")
	assert.Equal(t, rec.Body.String(), "[]\n")
}

func TestGenerateSelfSignedTLS_UsesTLS13Min(t *testing.T) {
	cfg, err := GenerateSelfSignedTLS([]string{"localhost", "127.0.0.1"}, time.Hour)
	assert.NoError(t, err)
	assert.Equal(t, cfg.MinVersion, uint16(tls.VersionTLS13))
	assert.Len(t, cfg.Certificates, 1)
}

func TestLoadTLSConfigMissingFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadTLSConfig(filepath.Join(dir, "cert.pem"), filepath.Join(dir, "key.pem"))
	assert.Error(t, err)

	_, err = Start(bootedMachine(t), Options{
		Addr:     "127.0.0.1:0",
		CertFile: filepath.Join(dir, "cert.pem"),
		KeyFile:  filepath.Join(dir, "key.pem"),
	})
	assert.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "cert.pem"))
	assert.True(t, os.IsNotExist(statErr))
}

func h3Client(timeout time.Duration) (*http.Client, func()) {
	tr := &http3.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS13}}
	return &http.Client{Transport: tr, Timeout: timeout}, func() { _ = tr.Close() }
}

func TestHTTP3_Loopback(t *testing.T) {
	srv, err := Start(bootedMachine(t), Options{Addr: "127.0.0.1:0"})
	if err != nil {
		t.Skip("http3 not supported here:", err)
	}
	defer srv.Stop()

	c, closeClient := h3Client(2 * time.Second)
	defer closeClient()
	resp, err := c.Get("https://" + srv.Addr() + "/version")
	if err != nil {
		t.Skip("http3 dial failed:", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	assert.Equal(t, resp.ProtoMajor, 3)
	assert.Contains(t, string(b), `"version": "`+cli.Version+`"`)
}

func TestStopReleasesPort(t *testing.T) {
	srv, err := Start(bootedMachine(t), Options{Addr: "127.0.0.1:0"})
	if err != nil {
		t.Skip("udp not available:", err)
	}
	addr := srv.Addr()
	assert.NoError(t, srv.Stop())

	pc, err := net.ListenPacket("udp", addr)
	assert.NoError(t, err, "port is free after Stop")
	if pc != nil {
		pc.Close()
	}
}
