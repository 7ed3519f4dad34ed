package export

import "github.com/pthm-cable/spray/sim"

// Multi hands each frame to several exporters in order, stopping at the
// first error. Nil entries are skipped.
type Multi []sim.Exporter

// Export implements sim.Exporter.
func (m Multi) Export(f sim.Frame) error {
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Export(f); err != nil {
			return err
		}
	}
	return nil
}
