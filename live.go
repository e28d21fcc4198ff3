package pcap

import (
	log "github.com/sirupsen/logrus"
)

// LiveFilterController installs filters onto open devices
type LiveFilterController struct {
	compiler *Compiler
	logger   *log.Entry
}

func NewLiveFilterController(c *Compiler) *LiveFilterController {
	return &LiveFilterController{
		compiler: c,
		logger:   log.WithField("component", "live"),
	}
}

// SetFilter compile expr against the device and install it. The device must
// be open. When compiling or installing fails the filter already on the
// device stays in effect.
func (l *LiveFilterController) SetFilter(dev Device, expr string) error {
	params, err := BoundParams(dev)
	if err != nil {
		return err
	}
	p, err := l.compiler.Compile(expr, params)
	if err != nil {
		return err
	}
	// the device keeps its own copy once installed
	defer p.Release()

	err = dev.SetBPF(p.Instructions())
	l.compiler.metrics.installed(err)
	if err != nil {
		return &InstallError{Expression: expr, Err: err}
	}
	l.logger.WithField("expression", expr).Debugf("installed %d instructions", p.Len())
	return nil
}

// ClearFilter install the filter that matches every packet
func (l *LiveFilterController) ClearFilter(dev Device) error {
	return l.SetFilter(dev, "")
}
