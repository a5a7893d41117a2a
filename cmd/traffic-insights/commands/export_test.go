package commands

// SetArgs sets the command line arguments for the next Run.
func (a *App) SetArgs(args ...string) {
	a.cmd.SetArgs(args)
}
