package powerflow

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Bus is a network node with its constant-power load and shunt.
type Bus struct {
	ID     string  `yaml:"id"`
	PdMW   float64 `yaml:"pd_mw"`
	QdMVAr float64 `yaml:"qd_mvar"`
	GsMW   float64 `yaml:"gs_mw"`
	BsMVAr float64 `yaml:"bs_mvar"`
	BaseKV float64 `yaml:"base_kv,omitempty"`
}

// Branch is a pi-model line or transformer. Impedances are in per-unit on
// the network base; B is the total line charging susceptance. A zero Tap
// means a nominal ratio of 1.
type Branch struct {
	ID   string  `yaml:"id"`
	From string  `yaml:"from"`
	To   string  `yaml:"to"`
	R    float64 `yaml:"r"`
	X    float64 `yaml:"x"`
	B    float64 `yaml:"b"`
	Tap  float64 `yaml:"tap"`
}

// Generator regulates the voltage of its bus. Exactly one generator is the
// slack, whose active power is solved rather than set.
type Generator struct {
	ID    string  `yaml:"id"`
	Bus   string  `yaml:"bus"`
	VmPU  float64 `yaml:"vm_pu"`
	PMW   float64 `yaml:"p_mw"`
	Slack bool    `yaml:"slack"`
}

// Network is a steady-state network model.
type Network struct {
	Name       string      `yaml:"name"`
	BaseMVA    float64     `yaml:"base_mva"`
	Buses      []Bus       `yaml:"buses"`
	Branches   []Branch    `yaml:"branches"`
	Generators []Generator `yaml:"generators"`
}

var (
	// ErrInvalidNetwork indicates a structurally unusable network model.
	ErrInvalidNetwork = errors.New("powerflow: invalid network")
)

// LoadNetwork reads a YAML network model and validates it.
func LoadNetwork(path string) (*Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var n Network
	if err := yaml.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decode network %s: %w", path, err)
	}
	if n.BaseMVA == 0 {
		n.BaseMVA = 100
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return &n, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidNetwork, fmt.Sprintf(format, args...))
}

// Validate checks identifiers, references and the slack definition.
//
//gocyclo:ignore
func (n *Network) Validate() error {
	if n.BaseMVA <= 0 {
		return invalid("base_mva must be positive")
	}
	if len(n.Buses) == 0 {
		return invalid("no buses")
	}
	buses := make(map[string]struct{}, len(n.Buses))
	for _, b := range n.Buses {
		if b.ID == "" {
			return invalid("bus without id")
		}
		if _, dup := buses[b.ID]; dup {
			return invalid("duplicate bus %s", b.ID)
		}
		buses[b.ID] = struct{}{}
	}
	for _, br := range n.Branches {
		if _, ok := buses[br.From]; !ok {
			return invalid("branch %s: unknown bus %s", br.ID, br.From)
		}
		if _, ok := buses[br.To]; !ok {
			return invalid("branch %s: unknown bus %s", br.ID, br.To)
		}
		if br.From == br.To {
			return invalid("branch %s connects bus %s to itself", br.ID, br.From)
		}
		if br.R == 0 && br.X == 0 {
			return invalid("branch %s has zero impedance", br.ID)
		}
		if br.Tap < 0 {
			return invalid("branch %s has negative tap", br.ID)
		}
	}
	gens := make(map[string]struct{}, len(n.Generators))
	genBus := make(map[string]string, len(n.Generators))
	slack := 0
	for _, g := range n.Generators {
		if g.ID == "" {
			return invalid("generator without id")
		}
		if _, dup := gens[g.ID]; dup {
			return invalid("duplicate generator %s", g.ID)
		}
		gens[g.ID] = struct{}{}
		if _, ok := buses[g.Bus]; !ok {
			return invalid("generator %s: unknown bus %s", g.ID, g.Bus)
		}
		if other, ok := genBus[g.Bus]; ok {
			return invalid("generators %s and %s share bus %s", other, g.ID, g.Bus)
		}
		genBus[g.Bus] = g.ID
		if g.VmPU <= 0 {
			return invalid("generator %s: vm_pu must be positive", g.ID)
		}
		if g.Slack {
			slack++
		}
	}
	if slack != 1 {
		return invalid("expected exactly one slack generator, got %d", slack)
	}
	return nil
}

// GeneratorIDs returns every generator identifier: controllable generators in
// file order followed by the slack generator.
func (n *Network) GeneratorIDs() []string {
	ids := n.ControllableIDs()
	return append(ids, n.SlackID())
}

// ControllableIDs returns the non-slack generator identifiers in file order.
func (n *Network) ControllableIDs() []string {
	ids := make([]string, 0, len(n.Generators))
	for _, g := range n.Generators {
		if !g.Slack {
			ids = append(ids, g.ID)
		}
	}
	return ids
}

// SlackID returns the slack generator identifier.
func (n *Network) SlackID() string {
	for _, g := range n.Generators {
		if g.Slack {
			return g.ID
		}
	}
	return ""
}

// BusIDs returns the bus identifiers in file order.
func (n *Network) BusIDs() []string {
	ids := make([]string, len(n.Buses))
	for i, b := range n.Buses {
		ids[i] = b.ID
	}
	return ids
}

// TotalLoadMW sums the active load of all buses.
func (n *Network) TotalLoadMW() float64 {
	var s float64
	for _, b := range n.Buses {
		s += b.PdMW
	}
	return s
}
