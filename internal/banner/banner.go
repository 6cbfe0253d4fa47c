package banner

import (
	"github.com/charmbracelet/lipgloss"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(lipgloss.Color("#7D56F4")).
		Bold(true)

	ascii := `
    ____  ___  ____ _/ /__/ /___  ____ _____/ /
   / __ \/ _ \/ __ '/ //_/ / __ \/ __ '/ __  /
  / /_/ /  __/ /_/ / ,< / / /_/ / /_/ / /_/ /
 / .___/\___/\__,_/_/|_/_/\____/\__,_/\__,_/
/_/                                            `

	return "\n" + style.Render(ascii) + "\n"
}
