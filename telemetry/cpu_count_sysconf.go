//go:build linux || darwin || freebsd || netbsd || openbsd
// +build linux darwin freebsd netbsd openbsd

package telemetry

import "github.com/tklauser/go-sysconf"

func configuredCPUsSystem() (int, error) {
	value, err := sysconf.Sysconf(sysconf.SC_NPROCESSORS_CONF)
	if err != nil {
		return 0, &QueryError{Query: "sysconf(_SC_NPROCESSORS_CONF)", Err: err}
	}
	return int(value), nil
}

func clockTicksSystem() (int64, error) {
	value, err := sysconf.Sysconf(sysconf.SC_CLK_TCK)
	if err != nil {
		return 0, &QueryError{Query: "sysconf(_SC_CLK_TCK)", Err: err}
	}
	return value, nil
}
