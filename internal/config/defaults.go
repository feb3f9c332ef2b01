package config

// Default reactor limits.
const (
	DefaultStepLimit  = 8000
	DefaultDepthLimit = 1000
	DefaultCapacity   = 10000
)

// Default generator parameters.
const (
	DefaultBTreeSize          = 20
	DefaultFreeVarProbability = 0.2
	DefaultMaxFreeVars        = 6
	DefaultFontanaMaxDepth    = 10
)

// DefaultReactorConfig returns the default reactor. Its seed is unset, so
// every soup built from it draws from system entropy.
func DefaultReactorConfig() ReactorConfig {
	return ReactorConfig{
		StepLimit:  DefaultStepLimit,
		DepthLimit: DefaultDepthLimit,
		Capacity:   DefaultCapacity,
	}
}

// DefaultBTreeGenConfig returns the default binary-tree generator, seeded
// with all zeros so its output is reproducible.
func DefaultBTreeGenConfig() BTreeGenConfig {
	return BTreeGenConfig{
		Size:               DefaultBTreeSize,
		FreeVarProbability: DefaultFreeVarProbability,
		MaxFreeVars:        DefaultMaxFreeVars,
		Standardization:    StandardizationPrefix,
		Seed:               ZeroSeed(),
	}
}

// DefaultFontanaGenConfig returns the default Fontana generator. Abstraction
// becomes less likely and application more likely with depth.
func DefaultFontanaGenConfig() FontanaGenConfig {
	return FontanaGenConfig{
		AbstractionRange: [2]float64{0.5, 0.3},
		ApplicationRange: [2]float64{0.3, 0.5},
		MaxDepth:         DefaultFontanaMaxDepth,
		MaxFreeVars:      DefaultMaxFreeVars,
		Seed:             ZeroSeed(),
	}
}

// DefaultSettings returns all defaults.
func DefaultSettings() Settings {
	return Settings{
		Reactor: DefaultReactorConfig(),
		BTree:   DefaultBTreeGenConfig(),
		Fontana: DefaultFontanaGenConfig(),
	}
}

// ApplyReactorDefaults fills zero limits with their defaults.
func ApplyReactorDefaults(c *ReactorConfig) {
	if c == nil {
		return
	}
	if c.StepLimit == 0 {
		c.StepLimit = DefaultStepLimit
	}
	if c.DepthLimit == 0 {
		c.DepthLimit = DefaultDepthLimit
	}
	if c.Capacity == 0 {
		c.Capacity = DefaultCapacity
	}
}

// DefaultMap returns the defaults as a flat koanf map.
func DefaultMap() map[string]any {
	b := DefaultBTreeGenConfig()
	f := DefaultFontanaGenConfig()
	return map[string]any{
		"reactor.step_limit":        DefaultStepLimit,
		"reactor.depth_limit":       DefaultDepthLimit,
		"reactor.capacity":          DefaultCapacity,
		"reactor.seed":              "",
		"btree.size":                b.Size,
		"btree.freevar_probability": b.FreeVarProbability,
		"btree.max_free_vars":       b.MaxFreeVars,
		"btree.standardization":     b.Standardization.String(),
		"btree.seed":                b.Seed.String(),
		"fontana.abstraction_range": []float64{f.AbstractionRange[0], f.AbstractionRange[1]},
		"fontana.application_range": []float64{f.ApplicationRange[0], f.ApplicationRange[1]},
		"fontana.max_depth":         f.MaxDepth,
		"fontana.max_free_vars":     f.MaxFreeVars,
		"fontana.seed":              f.Seed.String(),
	}
}
