package common

// ErrModulePaused is returned by Guard when the module is paused.
var ErrModulePaused = NewError(KindModulePaused, "module paused")

// PauseView reports whether a module is paused by the operator.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard returns ErrModulePaused when the view reports the module as paused.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// StaticPauses is a PauseView backed by a fixed set of module names.
type StaticPauses map[string]bool

// IsPaused implements PauseView.
func (s StaticPauses) IsPaused(module string) bool {
	if s == nil {
		return false
	}
	return s[module]
}
