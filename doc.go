/*
Package synthflow schedules audio modules connected into a graph.

Concept

Modules are added to a FlowSystem and get a ScheduleNode each. During
Declare a module creates its streams:

    AudioStream - a sample stream, input or output;
    MultiStream - an input accepting any number of sources;
    AsyncStream - a packet stream.

Outputs own ring buffers. Inputs share the buffer of their source and
keep their own read cursor. An input without source reads a constant
value, see SetFloatValue.

Scheduling

Execution is pull based. Once per block the driver calls Schedule:

    pass, err := flow.Schedule(256)

Every running node without consumers is a sink and is requested to
produce the block. A request first asks producers of under-filled inputs
for the shortfall, then calculates as much as inputs have and outputs can
hold. Requests which come back to a busy node through a feedback loop
return -1 and the outer request retries while it makes progress.

Virtual ports

Connections are not applied to ports directly. They are declared in a
graph together with virtualization: a port can be implemented by a port
of another node (masquerade) or an input can forward straight to an
output of the same node. The graph compiles declarations into transports,
the only connections real ports see.

    flow.VirtualizeObject(voice, "in", filter, "in")
    flow.ConnectObject(osc, "out", voice, "in") // osc.out -> filter.in

Async packets

Packets are delivered through notifications. A packet is released when
every subscriber processed it. Outputs in pull mode recycle a fixed pool
of packets. Packets can be passed to a RemoteObject which has no node in
the flow system.
*/
package synthflow
