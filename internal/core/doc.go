// Package core runs the file processing flow: load a CSV, require the
// "nome" column, truncate its values to their first word, expose the result
// to a grid and save it.
//
// # Service
//
// [Service] is the single owner of the current table. Every operation takes
// its lock, so the web handlers and the CLI can share one instance the way
// a desktop window shares its UI thread:
//
//	svc := core.NewService(cfg, history.NewMemoryRecorder(100))
//	if _, err := svc.ProcessFile(ctx, "clientes.csv"); err != nil {
//	    fmt.Println(core.FormatUserError(err))
//	}
//	path, err := svc.Save(ctx, "") // writes csv2.csv
//
// A load that fails at any step leaves the previous table, grid and save
// state as they were.
//
// # Error Handling
//
// Errors are mapped to user-facing messages with support codes by
// [MapError]. See error_messages.go for the code list.
package core
