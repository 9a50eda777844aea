// Package topology builds flow pipelines from YAML definitions.
//
// A definition names its processors, the registered component each one is
// made from, and where its inputs come from:
//
//	name: pairs
//	processors:
//	  - name: numbers
//	    component: number-pairs
//	    source: true
//	  - name: add
//	    component: add
//	    inputs: [numbers, words]
//	  - name: log-failure
//	    component: logger
//	    inputs: ["add:failure"]
//
// An input is either a processor name, meaning its "success" channel, or
// "processor:channel". Several inputs form a funnel into the processor.
//
// Components are registered as factories so a definition can use the same
// component for several processors:
//
//	reg := topology.NewRegistry()
//	reg.Register("add", func(p topology.Params) (flow.Stage, error) { ... })
//	built, err := topology.Build(def, reg)
package topology
