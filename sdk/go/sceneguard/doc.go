// Package sceneguard provides in-process streaming guards for generated
// scene prose. A Guard watches model output fragment by fragment and stops
// the scene once it reaches its end condition, jumps in time, summarizes,
// outgrows its length cap or brings in characters who do not belong.
//
// Usage:
//
//	sg, err := sceneguard.New(sceneguard.WithProfile("strict"))
//	g, err := sg.NewGuard(sceneguard.Scene{
//	    TargetLength:     2000,
//	    EndCondition:     "문을 닫고 돌아섰다.",
//	    EndConditionKind: sceneguard.EndAction,
//	    Characters:       []string{"서연", "민준"},
//	})
//	for chunk := range modelStream {
//	    res := g.ProcessFragment(chunk)
//	    emit(res.ProcessedFragment)
//	    if !res.ShouldContinue {
//	        break
//	    }
//	}
//
// The SDK links directly against internal packages for zero-subprocess
// overhead. External users import github.com/ppiankov/sceneguard/sdk/go/sceneguard.
package sceneguard
