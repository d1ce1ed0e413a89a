// Package filestore persists a whole store.IStreamSavableStore in one file.
//
// The file content is produced by the inner store's SaveTo and passes the pipeline layers in
// order (compression, then encryption). Loading applies the inverse layers in reverse order.
// Combine with autosave to save after every change.
package filestore
