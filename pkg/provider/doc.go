/*
Package provider defines the data collector contract and the builtin
collectors tasks poll for values.

A provider produces one comparable value per call. Providers are registered
at build time in a name-keyed table; the task engine resolves them through
the Registry, which also manages per-provider default configuration files
(<providers_location>/<name>.yml). At instantiation the task-supplied
provider_options are merged over the defaults, then the merged map is
validated against the provider's declared mandatory and optional parameter
sets.

Builtin providers:

  - http: performs an HTTP request and returns the status code or body
  - ping: shells out to the system ping and returns exit status, packet
    loss or round-trip times
  - sql: runs a PostgreSQL query and returns the first column of the
    first row
  - redis: observes a Redis instance (dbsize, llen, get)
  - graphite: fetches a target from a graphite render API and reduces its
    datapoints to one value

Errors returned by Process are recovered by the task and counted as a
violation for that tick; they never propagate past the task's run.
*/
package provider
