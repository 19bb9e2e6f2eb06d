package localstore

import (
	"bytes"
	"errors"
)

// Probe keys used by CheckHealth. Both are removed on every exit path.
const (
	healthProbeKey = "healthcheck-probe"
	quotaProbeKey  = "healthcheck-quota"
)

// quotaProbeSize is the payload size used to detect quota pressure.
const quotaProbeSize = 1 << 20 // 1MB

// Health describes the state of the client-local store.
type Health struct {
	// Available is true when a small write/delete round-trip succeeds.
	Available bool
	// QuotaOK is false when a ~1MB write fails with a quota error,
	// indicating the store is close to full.
	QuotaOK bool
	// UsedBytes is the summed size of all currently stored values. It is
	// an estimate: keys written concurrently with the probe may be missed.
	UsedBytes int
}

// CheckHealth probes the port for availability and quota pressure and
// estimates current usage. Probe keys never survive the call.
func (s *Store) CheckHealth() Health {
	var h Health

	if err := s.port.Set(healthProbeKey, []byte("ok")); err != nil {
		return h
	}
	defer s.port.Remove(healthProbeKey)
	h.Available = true

	payload := bytes.Repeat([]byte("x"), quotaProbeSize)
	err := s.port.Set(quotaProbeKey, payload)
	defer s.port.Remove(quotaProbeKey)
	h.QuotaOK = err == nil || !errors.Is(err, ErrQuotaExceeded)

	keys, err := s.port.Keys()
	if err != nil {
		return h
	}
	for _, k := range keys {
		if k == healthProbeKey || k == quotaProbeKey {
			continue
		}
		if v, found, err := s.port.Get(k); err == nil && found {
			h.UsedBytes += len(v)
		}
	}
	return h
}
