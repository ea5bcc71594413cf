// package services contains the REST client for the remote row store.
//
// The remote store speaks the PostgREST dialect: tables are URL paths,
// filters are query parameters of the form column=op.value and write
// behavior is negotiated through Prefer headers.
package services
