// Package tokenflow provides a token navigation process engine.
//
// A process definition is a graph of nodes connected by control flows. Each
// node carries an activity, a join behaviour for arriving tokens and a split
// behaviour for leaving ones. Tokens travel the graph and are executed by a
// pool of navigator workers; activities may suspend a token until a work
// item, trigger or timer resumes it.
//
// End-users typically interact with the engine via the Service facade
// exposed by the root package:
//
//	srv, _ := tokenflow.New()
//	rt := srv.Runtime()
//	_ = rt.Start(ctx)
//	def, _ := rt.LoadDefinition(ctx, "order.yaml")
//	instance, _ := rt.StartInstance(ctx, def.ID, map[string]interface{}{"amount": 10})
//	ended, _ := rt.Wait(ctx, instance.ID)
package tokenflow
