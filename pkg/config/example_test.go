package config_test

import (
	"fmt"
	"os"

	"github.com/ajitpratap0/harvest/pkg/config"
)

// ExampleParse demonstrates loading configuration with environment variable
// substitution on top of the defaults.
func ExampleParse() {
	os.Setenv("HARVEST_EXAMPLE_COLLECTION", "Tracks")
	defer os.Unsetenv("HARVEST_EXAMPLE_COLLECTION")

	cfg := config.Default()
	err := config.Parse([]byte(`
module:
  foreach: ${HARVEST_EXAMPLE_COLLECTION}
  contact: ${HARVEST_EXAMPLE_CONTACT:-nobody@example.org}
refiners:
  - kind: figures_of_merit
    aggregation: median
`), cfg)
	if err != nil {
		fmt.Println(err)
		return
	}
	cfg.ApplyDefaults()

	fmt.Println(cfg.Module.ID, cfg.Module.Contact, cfg.Module.ExpertLevel)
	fmt.Println(cfg.Validate() == nil)

	// Output:
	// Tracks nobody@example.org 1
	// true
}
