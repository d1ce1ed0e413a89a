// Package autosave provides a decorator that saves a store.ISavableStore after every change.
//
// Saves are coalesced: all mutations made before the loop runs the scheduled save are written by
// that one save. Flush saves immediately, Close performs a final save.
//
// Example:
//
//	inner, _ := filestore.New(mapstore.New(nil), "settings.json", pipeline.Options{})
//	_ = inner.Load()
//	s, _ := autosave.New(inner, loop)
//	defer s.Close()
//	_ = s.SetBool("audio.muted", true) // saved on the next loop iteration
package autosave
