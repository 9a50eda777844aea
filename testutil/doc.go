// Package testutil starts components and runs stages from tests, with
// cleanup registered on the test.
//
//	func TestFeature(t *testing.T) {
//	    h := testutil.T(t)
//	    h.Start(comp)
//	    h.WaitHealthy(comp, time.Second)
//	    out := h.Collect(stage, flow.InputOf(1))
//	}
package testutil
