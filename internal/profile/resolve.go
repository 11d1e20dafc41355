package profile

import (
	"github.com/ggonzalez94/mfi-cli/internal/config"
)

// Resolve loads a profile and derives the effective Config. The profile is
// returned as well since the consent gate and the processor need it.
// Resolution fails closed: there is no implicit config without a profile.
func Resolve(loader Loader, overrides config.GlobalOptions) (Profile, config.Config, error) {
	p, err := loader.Load()
	if err != nil {
		return Profile{}, config.Config{}, err
	}
	cfg, err := p.Config(overrides)
	if err != nil {
		return Profile{}, config.Config{}, err
	}
	return p, cfg, nil
}
