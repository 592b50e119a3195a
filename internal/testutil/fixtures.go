package testutil

// SimpleRungXML is a PLCopen document with one traced rung:
// "XIC Start XIO Stop OTE Motor".
const SimpleRungXML = `<?xml version="1.0" encoding="utf-8"?>
<project xmlns="http://www.plcopen.org/xml/tc6_0201">
  <types><pous><pou name="Main" pouType="program"><body><LD>
    <leftPowerRail localId="1"><position x="0" y="10"/></leftPowerRail>
    <contact localId="2">
      <position x="50" y="10"/>
      <connectionPointIn><connection refLocalId="1"/></connectionPointIn>
      <variable>Start</variable>
    </contact>
    <contact localId="3" negated="true">
      <position x="100" y="10"/>
      <connectionPointIn><connection refLocalId="2"/></connectionPointIn>
      <variable>Stop</variable>
    </contact>
    <coil localId="4">
      <position x="150" y="10"/>
      <connectionPointIn><connection refLocalId="3"/></connectionPointIn>
      <variable>Motor</variable>
    </coil>
    <rightPowerRail localId="5">
      <position x="200" y="10"/>
      <connectionPointIn><connection refLocalId="4"/></connectionPointIn>
    </rightPowerRail>
  </LD></body></pou></pous></types>
</project>`

// PositionalXML has no wiring, so its rungs come from vertical bands.
const PositionalXML = `<project><LD>
  <contact localId="1"><position x="10" y="5"/><variable>A</variable></contact>
  <coil localId="2"><position x="60" y="12"/><variable>B</variable></coil>
  <contact localId="3"><position x="10" y="45"/><variable>HMI_Reset</variable></contact>
  <coil localId="4" negated="true"><position x="60" y="50"/><variable>B</variable></coil>
</LD></project>`

// NoLadderXML is well-formed XML without any LD body.
const NoLadderXML = `<project><types><pous><pou name="Empty"/></pous></types></project>`
