package tui

// Keybinding constants
const (
	KeyTab       = "tab"
	KeyShiftTab  = "shift+tab"
	KeyQuit      = "q"
	KeyCtrlC     = "ctrl+c"
	KeyEsc       = "esc"
	KeyPane1     = "1"
	KeyPane2     = "2"
	KeyPane3     = "3"
	KeyUp        = "up"
	KeyDown      = "down"
	KeyJ         = "j"
	KeyK         = "k"
	KeyNewRun    = "n"
	KeyCancelRun = "x"
)

// HelpView returns a one-line help bar with common keybindings.
func HelpView() string {
	return StyleHelp.Render("Tab: cycle focus | 1/2/3: jump to pane | j/k: scroll | n: new story | x: cancel run | q: quit")
}
