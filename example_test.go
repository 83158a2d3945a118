package sight_test

import (
	"fmt"
	"log"

	"github.com/aretw0/sight"
	"github.com/aretw0/sight/pkg/adapters/memory"
)

// ExampleNew_memory demonstrates how to run a configuration held in memory.
// This is useful for testing, embedded scenarios, or when you don't want to rely on the file system.
func ExampleNew_memory() {
	loader := memory.NewLoader(map[string]string{
		"hello": `
config:
  - object: {uid: greeting, type: "sight::data::string", value: "${name}"}
  - service:
      uid: printer
      type: sight::service::printer
      in:
        - {key: source, uid: greeting}
      config: {prefix: "hello, "}
  - start: {uid: printer}
  - update: {uid: printer}
`,
	})

	// We leave the path empty ("") because we are providing a loader.
	launcher, err := sight.New("", sight.WithLoader(loader), sight.WithFields(map[string]string{"name": "world"}))
	if err != nil {
		log.Fatal(err)
	}
	defer launcher.Close()

	m, err := launcher.Launch("hello")
	if err != nil {
		log.Fatal(err)
	}
	m.StopAndDestroy()
	fmt.Println(m.State())

	// Output:
	// hello, world
	// destroyed
}
