package config

import (
	"strings"

	"github.com/spf13/pflag"

	"hypervisorReturns/internal/model"
)

// FilterFromFlags reads --chain, --period, --address and --protocol.
func FilterFromFlags(flags *pflag.FlagSet) (model.Filter, error) {
	var f model.Filter
	var err error
	if f.Chain, err = flags.GetString("chain"); err != nil {
		return f, err
	}
	if f.Period, err = flags.GetInt("period"); err != nil {
		return f, err
	}
	if f.Address, err = flags.GetString("address"); err != nil {
		return f, err
	}
	if flags.Lookup("protocol") != nil {
		if f.Protocol, err = flags.GetString("protocol"); err != nil {
			return f, err
		}
	}
	f.Chain = strings.TrimSpace(f.Chain)
	f.Protocol = strings.TrimSpace(f.Protocol)
	return f.Normalized(), f.Validate()
}
