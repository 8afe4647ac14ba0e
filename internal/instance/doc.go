// Package instance turns a cookiecutter template and a set of substitution
// values into a concrete project directory on disk.
//
// # Generation
//
//	gen := instance.NewGenerator(runner, instance.Options{
//	    OutputRoot: "sample",
//	    ConfigRoot: "tests",
//	})
//	inst, err := gen.Generate(ctx, instance.Request{
//	    Template: ".",
//	    Values:   instance.Values{"repo_name": "test-repo"},
//	})
//	// inst.Path == "sample/test-repo"
//
// Generate deep-copies the caller's values, wraps them in a
// {"default_context": ...} envelope, writes the envelope to a configuration
// artifact whose file name carries the request's session id, and runs
//
//	cookiecutter <template> --output-dir <dir> --no-input --config-file <artifact>
//
// The instance path is computed from the envelope, never by inspecting the
// generated files: <output_root>[/<session>]/<value of the name key>.
//
// # Ownership
//
// The generator never deletes anything. Removing the instance and the
// artifact is the caller's job (see package harness). Generate refuses to
// write into an instance path or artifact that already exists, so a caller
// may always remove what a returned Instance names.
package instance
