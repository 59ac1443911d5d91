// Package upstream holds the pieces shared by every component that talks to
// the registry on its own initiative rather than on behalf of an inbound
// client request: the prefetcher and the change synchronizer. It decodes the
// three content-encodings the registry is known to use and performs the
// bare GET-and-read-body round trip against a shared *http.Client.
package upstream
