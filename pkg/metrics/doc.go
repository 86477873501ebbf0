/*
Package metrics aggregates the counters shared by every worker and periodically reports them.

All mutations and every report cycle take the same lock. The lock is only held for a few additions
and the formatted write of the report itself, never while a query is in flight. A report cycle
reads and resets the per interval counters in the same critical section as the increments, so no
increment can be lost or counted twice across a report.

Reporting is driven by the updates themselves: each Record* call checks whether the report interval
(one second by default) has elapsed since the previous report and, if so, emits one. Calls that land
within the same interval only accumulate.

The default Reporter is a Console which either redraws three lines in place or appends a block per
report. Once timings are enabled the console always appends, followed by the latency histogram.
*/
package metrics
