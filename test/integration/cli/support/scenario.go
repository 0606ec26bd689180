package support

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cucumber/godog"
)

// Scenario is the state of one feature scenario: a throwaway library root,
// which is also HOME and the working directory of every command, and the
// outcome of the last command.
type Scenario struct {
	Root string

	env       []string
	last      invocation
	snapshots map[string][]byte
}

// Open creates the library root. User configuration and model caches resolve
// inside it, so scenarios never see the host's files.
func (s *Scenario) Open() error {
	root, err := os.MkdirTemp("", "mokugo-scenario-*")
	if err != nil {
		return fmt.Errorf("failed to create library root: %w", err)
	}
	*s = Scenario{
		Root: root,
		env: []string{
			"HOME=" + root,
			"XDG_CONFIG_HOME=" + filepath.Join(root, ".config"),
			"XDG_CACHE_HOME=" + filepath.Join(root, ".cache"),
		},
		snapshots: map[string][]byte{},
	}
	return nil
}

// Close removes the library root.
func (s *Scenario) Close() error {
	if s.Root == "" {
		return nil
	}
	return os.RemoveAll(s.Root)
}

// Path resolves a slash-separated path inside the library root.
func (s *Scenario) Path(rel string) string {
	return filepath.Join(s.Root, filepath.FromSlash(rel))
}

// Register binds every step phrase used by the features.
func (s *Scenario) Register(sc *godog.ScenarioContext) {
	// Library setup.
	sc.Step(`^a title "([^"]*)" with a volume "([^"]*)" of (\d+) pages?$`, s.aVolumeOfPages)
	sc.Step(`^a title "([^"]*)" with an archived volume "([^"]*)" of (\d+) pages?$`, s.anArchivedVolumeOfPages)
	sc.Step(`^a file "([^"]*)" containing "([^"]*)"$`, s.aFileContaining)
	sc.Step(`^I delete the file "([^"]*)"$`, s.iDeleteTheFile)
	sc.Step(`^I remember the file "([^"]*)"$`, s.iRememberTheFile)

	// Running mokugo.
	sc.Step(`^I run "([^"]*)"$`, s.iRun)
	sc.Step(`^the command should succeed$`, s.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, s.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, s.theOutputShouldContain)
	sc.Step(`^the error should mention "([^"]*)"$`, s.theErrorShouldMention)

	// Results on disk.
	sc.Step(`^the file "([^"]*)" should exist$`, s.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should not exist$`, s.theFileShouldNotExist)
	sc.Step(`^the file "([^"]*)" should be unchanged$`, s.theFileShouldBeUnchanged)
	sc.Step(`^the manifest "([^"]*)" should list (\d+) pages?$`, s.theManifestShouldListPages)
	sc.Step(`^the manifests "([^"]*)" and "([^"]*)" should share a title uuid$`, s.theManifestsShouldShareTitleUUID)
	sc.Step(`^the cache of "([^"]*)" volume "([^"]*)" should hold (\d+) pages?$`, s.theCacheShouldHoldPages)
}
