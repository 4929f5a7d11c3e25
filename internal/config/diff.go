package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	SequencesChanged bool // true if any sequence's prompt, constraint, or tier changed
	SequenceChanges  []SequenceDiff
	LogLevelChanged  bool
	NewLogLevel      LogLevel
}

// SequenceDiff describes what changed for a single sequence between two
// configs.
type SequenceDiff struct {
	Name              string
	PromptChanged     bool
	ConstraintChanged bool
	TierChanged       bool
	Added             bool
	Removed           bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Build sequence lookup maps keyed by name.
	oldSeqs := make(map[string]*SequenceConfig, len(old.Sequences))
	for i := range old.Sequences {
		oldSeqs[old.Sequences[i].Name] = &old.Sequences[i]
	}
	newSeqs := make(map[string]*SequenceConfig, len(new.Sequences))
	for i := range new.Sequences {
		newSeqs[new.Sequences[i].Name] = &new.Sequences[i]
	}

	// Detect modified and removed sequences.
	for name, oldSeq := range oldSeqs {
		newSeq, exists := newSeqs[name]
		if !exists {
			d.SequenceChanges = append(d.SequenceChanges, SequenceDiff{
				Name:    name,
				Removed: true,
			})
			d.SequencesChanged = true
			continue
		}
		sd := diffSequence(name, oldSeq, newSeq)
		if sd.PromptChanged || sd.ConstraintChanged || sd.TierChanged {
			d.SequenceChanges = append(d.SequenceChanges, sd)
			d.SequencesChanged = true
		}
	}

	// Detect added sequences.
	for name := range newSeqs {
		if _, exists := oldSeqs[name]; !exists {
			d.SequenceChanges = append(d.SequenceChanges, SequenceDiff{
				Name:  name,
				Added: true,
			})
			d.SequencesChanged = true
		}
	}

	return d
}

// diffSequence compares two sequence configs with the same name.
func diffSequence(name string, old, new *SequenceConfig) SequenceDiff {
	sd := SequenceDiff{Name: name}

	if old.Prompt != new.Prompt {
		sd.PromptChanged = true
	}

	if old.Regex != new.Regex || !stringsEqual(old.Options, new.Options) || old.StoreVar != new.StoreVar {
		sd.ConstraintChanged = true
	}

	if old.Tier != new.Tier {
		sd.TierChanged = true
	}

	return sd
}

// stringsEqual reports whether two string slices hold the same elements in
// the same order.
func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
