//go:build !linux

package raspberry

import "edgewatch/pkg/port"

// unsupportedChip stands in for the linux backends, it can't be opened.
type unsupportedChip struct{}

func openGpiod(string) (*unsupportedChip, error) { return nil, ErrUnsupported }

func openGpiomem() (*unsupportedChip, error) { return nil, ErrUnsupported }

func (unsupportedChip) Watch([]int, Bias, Handler) error { return ErrUnsupported }

func (unsupportedChip) Level(int) port.StateType { return port.Invalid }

func (unsupportedChip) Close() error { return nil }
