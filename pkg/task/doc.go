/*
Package task implements the per-task state machine at the heart of the
night-watch daemon.

A task polls one or more providers, compares each collected value against
its threshold, and moves through three states evaluated at the end of every
tick:

	NORMAL ──all violate──▶ RETRYING(k) ──retries exhausted──▶ FAILED
	   ▲                        │                                 │
	   └────────conform─────────┴──────────conform────────────────┘

Failure actions fire exactly once on the NORMAL/RETRYING → FAILED edge;
success actions fire exactly once on the FAILED → NORMAL edge. A recovery
from RETRYING fires nothing. Each state has its own polling period
(period_success, period_retry, period_failed); on a state change the task
asks its PeriodController for the matching period and the manager
reschedules the job.

A tick counts as a violation only when every provider violated its
condition or errored. Provider errors are recovered, logged, recorded in
the observation history with ok=false, and counted as violations for that
provider. The last five observations per provider are kept in a ring and
exposed through Status.
*/
package task
