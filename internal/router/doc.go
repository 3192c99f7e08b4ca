// Package router serves deployed sites by reverse proxying to the artifact store.
//
// The first label of the request host names the project. A request for
// http://brave-quiet-otter.example.com/about.html is forwarded to
// <store-base>/brave-quiet-otter/about.html, and the store's response is relayed
// as is, including a not-found status. Only the root path is rewritten to
// /index.html; other directory-like paths are forwarded unchanged.
package router
